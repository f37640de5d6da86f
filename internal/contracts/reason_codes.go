package contracts

// ReasonCode is a stable machine-readable code attached to adapter failures.
type ReasonCode string

const (
	ReasonCodeValidationFailed      ReasonCode = "validation_failed"
	ReasonCodeAuthFailed            ReasonCode = "auth_failed"
	ReasonCodeTransportError        ReasonCode = "transport_error"
	ReasonCodeNotFound              ReasonCode = "not_found"
	ReasonCodeBuildTypeUnresolved   ReasonCode = "build_type_unresolved"
	ReasonCodeRangeAnchorUnresolved ReasonCode = "range_anchor_unresolved"
)
