package models

// Property represents a cleanable unit. Properties are read-only to the
// reconciler; they are maintained by hand in the record store.
type Property struct {
	ID            string // record id in the store
	Name          string
	OwnerName     string // owner full name, used for owner-block detection
	ListingNumber string // Evolve listing number extracted from upstream names
	CustomerID    string // field-service customer id
	AddressID     string // field-service address id
	FeedURLs      []string

	// Per-service-type ids used when creating downstream jobs.
	TemplateJobIDs map[ServiceType]string
	JobTypeIDs     map[ServiceType]string
}

// TemplateFor returns the template job id for a service type, falling back
// to the Turnover template when the specific type has none.
func (p *Property) TemplateFor(st ServiceType) string {
	if id, ok := p.TemplateJobIDs[st]; ok && id != "" {
		return id
	}
	return p.TemplateJobIDs[ServiceTypeTurnover]
}

// JobTypeFor returns the job-type id for a service type, falling back to
// the Turnover job type.
func (p *Property) JobTypeFor(st ServiceType) string {
	if id, ok := p.JobTypeIDs[st]; ok && id != "" {
		return id
	}
	return p.JobTypeIDs[ServiceTypeTurnover]
}
