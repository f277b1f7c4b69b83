package base

// GenericParams is the universal parameter structure for the adapters:
// a single free-text input, matching the adapter contract
// (query text in, text out).
type GenericParams struct {
	Input string `json:"input" schema:"required" description:"Input for the tool"`
}
