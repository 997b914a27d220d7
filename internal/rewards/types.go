package rewards

type EligibilityKind string

const (
	EligibilityCategory EligibilityKind = "category"
	EligibilitySeason   EligibilityKind = "season"
)

func (k EligibilityKind) Valid() bool {
	switch k {
	case EligibilityCategory, EligibilitySeason:
		return true
	default:
		return false
	}
}

type EligibilityStatus string

const (
	EligibilityActive  EligibilityStatus = "active"
	EligibilityUsed    EligibilityStatus = "used"
	EligibilityExpired EligibilityStatus = "expired"
)

type Tier string

const (
	TierCategory         Tier = "category"
	TierSeason           Tier = "season"
	TierCategoryUltimate Tier = "category_ultimate"
	TierMasterUltimate   Tier = "master_ultimate"
	TierSeasonalUltimate Tier = "seasonal_ultimate"
)

func (t Tier) Valid() bool {
	switch t {
	case TierCategory, TierSeason, TierCategoryUltimate, TierMasterUltimate, TierSeasonalUltimate:
		return true
	default:
		return false
	}
}

// ClaimTier is the catalog tier a claim against an eligibility of kind k draws from.
func ClaimTier(k EligibilityKind) Tier {
	if k == EligibilitySeason {
		return TierSeason
	}
	return TierCategory
}

type OperationKind string

const (
	OperationMint  OperationKind = "mint"
	OperationForge OperationKind = "forge"
)

type ForgeType string

const (
	ForgeCategory ForgeType = "category"
	ForgeMaster   ForgeType = "master"
	ForgeSeason   ForgeType = "season"
)

func (f ForgeType) Valid() bool {
	switch f {
	case ForgeCategory, ForgeMaster, ForgeSeason:
		return true
	default:
		return false
	}
}

// OutputTier is the tier of the item a forge of type f produces.
func (f ForgeType) OutputTier() Tier {
	switch f {
	case ForgeMaster:
		return TierMasterUltimate
	case ForgeSeason:
		return TierSeasonalUltimate
	default:
		return TierCategoryUltimate
	}
}

// MasterCategoryID is the catalog category holding master-tier items.
const MasterCategoryID = "master"

type OperationStatus string

const (
	OperationPending   OperationStatus = "pending"
	OperationConfirmed OperationStatus = "confirmed"
	OperationFailed    OperationStatus = "failed"
)

func (s OperationStatus) Terminal() bool {
	switch s {
	case OperationConfirmed, OperationFailed:
		return true
	case OperationPending:
		return false
	default:
		panic("rewards: unknown operation status " + string(s))
	}
}

// Stage tracks how far a pending operation got through pin, submit and confirm.
type Stage string

const (
	StageCreated   Stage = "created"
	StagePinned    Stage = "pinned"
	StageSubmitted Stage = "submitted"
	StageConfirmed Stage = "confirmed"
	StageFailed    Stage = "failed"
)

type OwnershipSource string

const (
	SourceMint  OwnershipSource = "mint"
	SourceForge OwnershipSource = "forge"
)

// Scope names one leaderboard within a period.
type Scope string

const GlobalScope Scope = "global"

func CategoryScope(categoryID string) Scope {
	return Scope("category:" + categoryID)
}
