package model

// ProgramMembership is a membership program hosted by a seller. Members may
// pay with points and receive point awards.
type ProgramMembership struct {
	ID                    string                   `json:"id"`
	ProgramName           string                   `json:"programName"`
	HostingOrganizationID string                   `json:"hostingOrganizationId"`
	MembershipNumber      string                   `json:"membershipNumber,omitempty"`
	AwardPoint            int                      `json:"awardPoint,omitempty"`
	Offers                []ProgramMembershipOffer `json:"offers,omitempty"`
}

// ProgramMembershipOffer is a purchasable membership term. EligibleDuration
// is in seconds.
type ProgramMembershipOffer struct {
	Identifier       string `json:"identifier"`
	Price            int    `json:"price"`
	EligibleDuration int    `json:"eligibleDuration"`
}

// FindOffer returns the offer with identifier, if present.
func (p ProgramMembership) FindOffer(identifier string) (ProgramMembershipOffer, bool) {
	for _, o := range p.Offers {
		if o.Identifier == identifier {
			return o, true
		}
	}
	return ProgramMembershipOffer{}, false
}
