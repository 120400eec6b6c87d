package model

// Patient is a persisted patient record. History is an append-only medical
// log; it is only visible to doctors already assigned to the patient.
type Patient struct {
	ID          uint64   `json:"id"`
	Name        string   `json:"name"`
	History     string   `json:"history"`
	Password    string   `json:"password"`
	DoctorIDs   []uint64 `json:"doctor_ids"`
	HospitalIDs []uint64 `json:"hospital_ids"`
}

// Masked returns a display copy for public reads: both the password and the
// medical history are hidden.
func (p *Patient) Masked() *Patient {
	masked := *p
	masked.Password = MaskedPassword
	masked.History = MaskedPassword
	return &masked
}

// MaskedForDoctor returns a copy for an authorized doctor: the history stays
// visible, only the password is hidden.
func (p *Patient) MaskedForDoctor() *Patient {
	masked := *p
	masked.Password = MaskedPassword
	return &masked
}
