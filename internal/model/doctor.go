package model

// Doctor is a persisted doctor record. HospitalID is the single hospital the
// doctor is currently attached to, last write wins.
type Doctor struct {
	ID         uint64   `json:"id"`
	Name       string   `json:"name"`
	Password   string   `json:"password"`
	HospitalID uint64   `json:"hospital_id"`
	PatientIDs []uint64 `json:"patient_ids"`
}

// Masked returns a display copy with the password replaced.
func (d *Doctor) Masked() *Doctor {
	masked := *d
	masked.Password = MaskedPassword
	return &masked
}
