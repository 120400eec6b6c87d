package model

// MaskedPassword replaces the stored secret in records returned by public
// reads. Display callers never see the real value.
const MaskedPassword = "-"

// Hospital is a persisted hospital record. PatientIDs and DoctorIDs are
// back-reference lists maintained symmetrically with the referenced records.
type Hospital struct {
	ID         uint64   `json:"id"`
	Name       string   `json:"name"`
	Address    string   `json:"address"`
	Password   string   `json:"password"`
	PatientIDs []uint64 `json:"patient_ids"`
	DoctorIDs  []uint64 `json:"doctor_ids"`
}

// Masked returns a display copy with the password replaced.
func (h *Hospital) Masked() *Hospital {
	masked := *h
	masked.Password = MaskedPassword
	return &masked
}
