package model

// Registration is one attendee's sign-up for a workshop. Rows are never
// updated after insert.
type Registration struct {
	ID          int64
	Name        string
	Email       string
	Phone       string
	Institution string
	Course      string
	Workshop    string
	Referrer    *string
}

// ReferrerOrEmpty returns the referral code or "" when none was given.
func (r Registration) ReferrerOrEmpty() string {
	if r.Referrer == nil {
		return ""
	}
	return *r.Referrer
}

// QRPayload is the text encoded into the attendee's QR code.
func (r Registration) QRPayload() string {
	return r.Name + " - " + r.Workshop
}

var workshops = []string{
	"Cloud computing",
	"Artificial Intelligence",
	"Python Basics",
	"Data Science",
	"Machine Learning",
	"Data Analysis",
	"Data Visualisation",
	"Web Development",
	"Django for backend",
}

// Workshops returns the catalogue offered on the registration form.
func Workshops() []string {
	out := make([]string, len(workshops))
	copy(out, workshops)
	return out
}

func IsWorkshop(name string) bool {
	for _, w := range workshops {
		if w == name {
			return true
		}
	}
	return false
}
