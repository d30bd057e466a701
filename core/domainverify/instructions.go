package domainverify

import "github.com/stencilhq/stencil/core/customdomain"

// challengeTTL is the DNS TTL owners are asked to use so record changes
// propagate quickly while they iterate on their setup.
const challengeTTL = 300

// Instructions describe exactly what a domain owner must publish to pass
// verification with the domain's configured method.
type Instructions struct {
	Method customdomain.VerificationMethod `json:"method"`

	// DNS methods.
	RecordType string `json:"record_type,omitempty"`
	Host       string `json:"host,omitempty"`
	Value      string `json:"value,omitempty"`
	TTL        int    `json:"ttl,omitempty"`

	// File-upload method.
	Filename string `json:"filename,omitempty"`
	Path     string `json:"path,omitempty"`
	Content  string `json:"content,omitempty"`
}

// Instructions returns the challenge the owner of the given domain must
// publish. An unsupported method returns ErrInvalidMethod.
func (e *Engine) Instructions(domain *customdomain.Domain) (Instructions, error) {
	host := challengePrefix + domain.DomainName

	switch domain.VerificationMethod {
	case customdomain.MethodDNSTXT:
		return Instructions{
			Method:     customdomain.MethodDNSTXT,
			RecordType: "TXT",
			Host:       host,
			Value:      domain.VerificationToken,
			TTL:        challengeTTL,
		}, nil
	case customdomain.MethodDNSCNAME:
		return Instructions{
			Method:     customdomain.MethodDNSCNAME,
			RecordType: "CNAME",
			Host:       host,
			Value:      domain.VerificationToken + ".verify." + e.providerDomain,
			TTL:        challengeTTL,
		}, nil
	case customdomain.MethodFileUpload:
		filename := "verify-" + domain.VerificationToken + ".txt"
		return Instructions{
			Method:   customdomain.MethodFileUpload,
			Filename: filename,
			Path:     "/.well-known/" + filename,
			Content:  domain.VerificationToken,
		}, nil
	default:
		return Instructions{}, ErrInvalidMethod
	}
}
