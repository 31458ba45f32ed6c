package realtime

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pion/webrtc/v3"

	"github.com/tutorlive/backend/pkg/response"
)

// ICEServers builds the STUN/TURN list handed to browsers. TURN entries get
// the shared credentials; STUN entries never carry them.
func ICEServers(urls []string, username, credential string) []webrtc.ICEServer {
	servers := make([]webrtc.ICEServer, 0, len(urls))
	for _, u := range urls {
		if u == "" {
			continue
		}
		s := webrtc.ICEServer{URLs: []string{u}}
		if username != "" && (strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:")) {
			s.Username = username
			s.Credential = credential
			s.CredentialType = webrtc.ICECredentialTypePassword
		}
		servers = append(servers, s)
	}
	return servers
}

// ICEServersHandler serves GET /webrtc/ice-servers.
func ICEServersHandler(servers []webrtc.ICEServer) gin.HandlerFunc {
	return func(c *gin.Context) {
		response.OK(c, gin.H{"iceServers": servers})
	}
}
