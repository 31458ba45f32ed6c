package models

// Tutor is the durable provider record. Only the fields the live core reads or
// writes are mapped; the rest of the record belongs to the profile CRUD.
type Tutor struct {
	ID       string `json:"id" bson:"_id"`
	Name     string `json:"name" bson:"name"`
	Image    string `json:"image" bson:"image"`
	Skills   string `json:"skills" bson:"skills"`
	Branch   string `json:"branch,omitempty" bson:"branch"`
	Approved bool   `json:"approved" bson:"approved"`
	IsLive   bool   `json:"is_live" bson:"isLive"`
}

// LiveTutor is the projection pushed to student dashboards.
type LiveTutor struct {
	ID     string `json:"_id" bson:"_id"`
	Name   string `json:"name" bson:"name"`
	Image  string `json:"image" bson:"image"`
	Skills string `json:"skills" bson:"skills"`
}

// ToLive projects a tutor record for the live list.
func (t *Tutor) ToLive() LiveTutor {
	return LiveTutor{ID: t.ID, Name: t.Name, Image: t.Image, Skills: t.Skills}
}
