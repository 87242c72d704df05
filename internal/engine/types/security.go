package types

import "github.com/google/uuid"

// FundType classifies a security for Teilfreistellung (partial exemption)
// purposes. Modelled as a closed sum type rather than a bare string; the
// partial-exemption lookup (internal/engine/taxparams) is a total function
// because a fund type absent from the year's table resolves to 0%.
type FundType int

const (
	// FundTypeOther covers direct equities and anything that is not itself
	// a fund for InvStG purposes. Its partial-exemption rate is always 0.0.
	FundTypeOther FundType = iota
	FundTypeEquityFund
	FundTypeMixedFund
	FundTypeRealEstateFundDomestic
	FundTypeRealEstateFundForeign
)

func (f FundType) String() string {
	switch f {
	case FundTypeEquityFund:
		return "equity-fund"
	case FundTypeMixedFund:
		return "mixed-fund"
	case FundTypeRealEstateFundDomestic:
		return "real-estate-fund-domestic"
	case FundTypeRealEstateFundForeign:
		return "real-estate-fund-foreign"
	default:
		return "other"
	}
}

// ParseFundType maps the external string tag to a FundType. Unknown tags
// fall back to FundTypeOther, which the partial-exemption table does not
// list (so it resolves to 0%), rather than erroring — a new fund-type tag introduced by the
// parser should degrade to the conservative 0% exemption, not break ingest.
func ParseFundType(s string) FundType {
	switch s {
	case "equity-fund":
		return FundTypeEquityFund
	case "mixed-fund":
		return FundTypeMixedFund
	case "real-estate-fund-domestic":
		return FundTypeRealEstateFundDomestic
	case "real-estate-fund-foreign":
		return FundTypeRealEstateFundForeign
	default:
		return FundTypeOther
	}
}

// Security is an externally-supplied value object identifying one holding.
type Security struct {
	UUID     uuid.UUID
	Name     string
	ISIN     string
	WKN      string
	FundType FundType
	IsFund   bool
}
