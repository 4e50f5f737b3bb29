package api

const (
	// PingEndpoint is the endpoint for checking the API status
	PingEndpoint = "/ping"
	// InfoEndpoint returns a summary of the ledger
	InfoEndpoint = "/info"
	// OwnerEndpoint returns the owner (GET) or transfers the ownership (POST)
	OwnerEndpoint = "/owner"

	// ReviewersEndpoint lists (GET) or registers (POST) reviewers
	ReviewersEndpoint = "/reviewers"
	AddressURLParam   = "address"
	// ReviewerEndpoint checks (GET) or removes (DELETE) a reviewer
	ReviewerEndpoint = "/reviewers/{" + AddressURLParam + "}"

	// WorksEndpoint lists (GET) or registers (POST) works
	WorksEndpoint  = "/works"
	WorkIDURLParam = "workId"
	// WorkEndpoint returns a work
	WorkEndpoint = "/works/{" + WorkIDURLParam + "}"
	// ScoresEndpoint lists (GET) or submits (POST) the scores of a work
	ScoresEndpoint = WorkEndpoint + "/scores"
	// ScoreEndpoint returns the score of a reviewer for a work
	ScoreEndpoint = ScoresEndpoint + "/{" + AddressURLParam + "}"
	// AggregateEndpoint returns (GET) or computes (POST) the aggregate of a work
	AggregateEndpoint = WorkEndpoint + "/aggregate"
	// QualificationEndpoint computes the encrypted qualification flags of a work
	QualificationEndpoint = WorkEndpoint + "/qualification"
	// WorkDisclosureEndpoint reports whether a principal may decrypt the
	// aggregate of a work
	WorkDisclosureEndpoint = WorkEndpoint + "/disclosures/{" + AddressURLParam + "}"

	// AggregationsEndpoint lists (GET) or computes (POST) aggregates in batch
	AggregationsEndpoint = "/aggregations"
	// ThresholdEndpoint returns (GET) or sets (POST) the encrypted threshold
	ThresholdEndpoint = "/threshold"
	// DisclosuresEndpoint lists (GET) or grants (POST) disclosures
	DisclosuresEndpoint = "/disclosures"

	// ResultsEndpoint lists (GET) or publishes (POST) results
	ResultsEndpoint   = "/results"
	IndexURLParam     = "index"
	ResultEndpoint    = "/results/{" + IndexURLParam + "}"
	FromQueryParam    = "from"
	LimitQueryParam   = "limit"
	EventsEndpoint    = "/events"
	DefaultEventLimit = 100
	MaxEventLimit     = 1000

	// FHEEndpoint describes the fhe backend
	FHEEndpoint = "/fhe"
	// FHEInputsEndpoint encrypts inputs server side for the caller
	FHEInputsEndpoint = "/fhe/inputs"
	// FHEDecryptEndpoint is the user decryption oracle
	FHEDecryptEndpoint = "/fhe/decrypt"
)

// Actions of the signed requests, one per mutating endpoint.
const (
	ActionTransferOwnership = "transfer-ownership"
	ActionAddReviewers      = "add-reviewers"
	ActionRemoveReviewer    = "remove-reviewer"
	ActionAddWorks          = "add-works"
	ActionSubmitScore       = "submit-score"
	ActionAggregate         = "aggregate"
	ActionCheckQualify      = "check-qualification"
	ActionSetThreshold      = "set-threshold"
	ActionAllowDisclosure   = "allow-disclosure"
	ActionPublish           = "publish"
	ActionEncryptInputs     = "encrypt-inputs"
)
