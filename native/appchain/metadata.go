package appchain

import "math/big"

// Metadata carries the descriptive and escrow fields of a registered
// appchain. The staking and bridging state lives in State.
type Metadata struct {
	ID                 string
	FounderID          string
	WebsiteURL         string
	GithubAddress      string
	GithubRelease      string
	CommitID           string
	Email              string
	ChainSpecURL       string
	ChainSpecHash      string
	ChainSpecRawURL    string
	ChainSpecRawHash   string
	BootNodes          string
	RPCEndpoint        string
	SubqlURL           string
	BondTokens         *big.Int
	RegistrationHeight uint64
}

// NewMetadata builds the metadata of a freshly registered appchain.
func NewMetadata(id, founder, website, github string, bondTokens *big.Int, height uint64) *Metadata {
	if bondTokens == nil {
		bondTokens = new(big.Int)
	}
	return &Metadata{
		ID:                 id,
		FounderID:          founder,
		WebsiteURL:         website,
		GithubAddress:      github,
		BondTokens:         new(big.Int).Set(bondTokens),
		RegistrationHeight: height,
	}
}

// UpdateBasicInfo replaces the founder-editable descriptive fields.
func (m *Metadata) UpdateBasicInfo(website, github, release, commit, email, rpcEndpoint string) {
	m.WebsiteURL = website
	m.GithubAddress = github
	m.GithubRelease = release
	m.CommitID = commit
	m.Email = email
	m.RPCEndpoint = rpcEndpoint
}

// UpdateBootingInfo records the artefacts published at activation time.
func (m *Metadata) UpdateBootingInfo(bootNodes, rpcEndpoint, specURL, specHash, specRawURL, specRawHash string) {
	m.BootNodes = bootNodes
	m.RPCEndpoint = rpcEndpoint
	m.ChainSpecURL = specURL
	m.ChainSpecHash = specHash
	m.ChainSpecRawURL = specRawURL
	m.ChainSpecRawHash = specRawHash
}
