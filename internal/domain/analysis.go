package domain

import "time"

// Verdict is the normalized judgement a reputation source gives a target.
type Verdict string

const (
	VerdictMalicious  Verdict = "malicious"
	VerdictSuspicious Verdict = "suspicious"
	VerdictClean      Verdict = "clean"
	VerdictUnknown    Verdict = "unknown"
)

// FileType is the coarse content classification used by threat-intel
// coverage checks. FileTypeAny matches every source.
type FileType string

const (
	FileTypeAny        FileType = "any"
	FileTypeExecutable FileType = "executable"
	FileTypeDocument   FileType = "document"
	FileTypeArchive    FileType = "archive"
	FileTypeScript     FileType = "script"
)

// DNSRecordAnalysis carries the raw resolution facts for one domain.
// Available is false when every lookup failed or was rejected, in which case
// the scorer treats the dimension as unknown rather than missing.
type DNSRecordAnalysis struct {
	Available   bool
	ARecords    []string
	AAAARecords []string
	MXRecords   []string
	TXTRecords  []string
	HostCountry string
}

func (a DNSRecordAnalysis) HasRecords() bool {
	return len(a.ARecords) > 0 || len(a.AAAARecords) > 0
}

// WhoisDomainAnalysis carries registration facts for one domain.
type WhoisDomainAnalysis struct {
	Available        bool
	Registrar        string
	RegisteredAt     *time.Time
	ExpiresAt        *time.Time
	AgeDays          int
	NameServers      []string
	Statuses         []string
	PrivacyProtected bool
}

// TLSCertificateAnalysis carries the outcome of the HTTPS/TLS probe.
type TLSCertificateAnalysis struct {
	Available           bool
	HTTPSAvailable      bool
	HasValidCertificate bool
	SelfSigned          bool
	Revoked             bool
	Issuer              string
	Subject             string
	NotBefore           time.Time
	NotAfter            time.Time
	DaysUntilExpiry     int
	TLSVersion          string
	SecurityIssues      []string
}

// HomographAnalysis carries IDN, confusable-script and typosquat findings.
type HomographAnalysis struct {
	IsIDN          bool
	Punycode       string
	MixedScript    bool
	HasConfusables bool
	TyposquatOf    string
	EditDistance   int
}

// URLHeuristicsAnalysis carries pure pattern signals extracted from the URL
// itself without any network traffic.
type URLHeuristicsAnalysis struct {
	UsesHTTPS        bool
	IsShortener      bool
	IPLiteralHost    bool
	SuspiciousTLD    bool
	HasUserInfo      bool
	SubdomainDepth   int
	ExcessiveLength  bool
	EncodedCharCount int
}

// DomainReputationAnalysis is the aggregated reputation verdict for a domain.
type DomainReputationAnalysis struct {
	Available  bool
	Verdict    Verdict
	Confidence float64
	Category   string
}

// EmailProviderAnalysis carries table-driven facts about the mailbox domain.
type EmailProviderAnalysis struct {
	Domain            string
	IsDisposable      bool
	IsTrustedProvider bool
}

// EmailAuthAnalysis carries MX/SPF/DMARC/DKIM posture of the mailbox domain.
type EmailAuthAnalysis struct {
	Available   bool
	HasMX       bool
	HasSPF      bool
	SPFRecord   string
	HasDMARC    bool
	DMARCPolicy string
	HasDKIM     bool
}

// MaliciousHashAnalysis carries the local hash-table match outcome.
type MaliciousHashAnalysis struct {
	KnownMalicious bool
	KnownGood      bool
	MalwareFamily  string
}

// SourceVerdict is one upstream source's judgement of a hash, together with
// the weight its reliability lends it during aggregation.
type SourceVerdict struct {
	Source      string
	Verdict     Verdict
	Confidence  float64
	Reliability float64
	Detections  []string
}

// FileReputationAnalysis carries the per-source verdicts for a hash. The
// scorer aggregates them; sources that failed or whose coverage excluded the
// file type simply do not appear here.
type FileReputationAnalysis struct {
	SourcesQueried int
	Verdicts       []SourceVerdict
}

// EmailReputationAnalysis carries the per-source verdicts for a mailbox
// domain. Shaped like FileReputationAnalysis so the scorer can aggregate both
// the same way.
type EmailReputationAnalysis struct {
	SourcesQueried int
	Verdicts       []SourceVerdict
}

// URLAnalysisBundle is the fully assembled evidence for one URL scan.
// Completion order of the analyzers never matters: the bundle is
// order-independent by construction.
type URLAnalysisBundle struct {
	Domain     string
	DNS        DNSRecordAnalysis
	Whois      WhoisDomainAnalysis
	TLS        TLSCertificateAnalysis
	Homograph  HomographAnalysis
	Heuristics URLHeuristicsAnalysis
	Reputation DomainReputationAnalysis
}

// EmailAnalysisBundle is the fully assembled evidence for one email scan.
type EmailAnalysisBundle struct {
	Domain     string
	LocalPart  string
	Provider   EmailProviderAnalysis
	Auth       EmailAuthAnalysis
	DNS        DNSRecordAnalysis
	Reputation EmailReputationAnalysis
}

// FileHashAnalysisBundle is the fully assembled evidence for one hash scan.
type FileHashAnalysisBundle struct {
	Hash       string
	FileType   FileType
	LocalMatch MaliciousHashAnalysis
	Reputation FileReputationAnalysis
}
