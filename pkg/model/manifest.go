package model

// Bundle is the manifest describing a downloadable content bundle. It is the
// typed replacement for the loose descriptor maps the mobile clients pass
// around; validate tags are enforced before any preflight check runs.
type Bundle struct {
	ID          string `json:"id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	Units       []Unit `json:"units" validate:"required,min=1,unique=ID,dive"`
}

// Unit is one transferable item of a bundle. EstimatedBytes may be zero when
// the server does not know the size up front; a zero total estimate skips the
// quota preflight. SourceLocator is whatever the transfer primitive accepts,
// typically a URL.
type Unit struct {
	ID             string `json:"id" validate:"required"`
	EstimatedBytes int64  `json:"estimatedBytes,omitempty" validate:"min=0"`
	SourceLocator  string `json:"sourceLocator" validate:"required"`
}

// EstimatedTotal sums the per-unit size estimates. A zero result means the
// manifest carries no usable estimate.
func (b *Bundle) EstimatedTotal() int64 {
	var total int64
	for _, u := range b.Units {
		total += u.EstimatedBytes
	}
	return total
}
