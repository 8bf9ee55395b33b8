package authz

import (
	"github.com/manarah-platform/manarah/internal/shared"
)

// Gate maps (role, action) to allow/deny. It replaces scattered role-array
// membership checks with a single table consulted once per operation.
type Gate struct {
	table map[Role]map[Action]struct{}
}

// NewGate builds the default permission table.
func NewGate() *Gate {
	grants := map[Role][]Action{
		RoleAdmin: nil, // admin is granted everything below
		RoleRequester: {
			ActionRequestCreate,
			ActionAttachmentAdd,
		},
		RoleReviewer: {
			ActionAdvanceSubmitted,
			ActionRequestSetStatus,
			ActionAttachmentAdd,
		},
		RoleSupervisor: {
			ActionAdvanceSubmitted,
			ActionAdvanceInitialReview,
			ActionAdvanceExecution,
			ActionRequestSetStatus,
			ActionRequestReopen,
			ActionAttachmentAdd,
			ActionMosqueManage,
			ActionContractView,
			ActionContractManage,
		},
		RoleFieldEngineer: {
			ActionAdvanceFieldVisit,
			ActionAttachmentAdd,
		},
		RoleTechnicalCommittee: {
			ActionAdvanceTechnicalEval,
			ActionRequestSetStatus,
			ActionBOQEdit,
			ActionBOQImport,
		},
		RoleFinancialOfficer: {
			ActionAdvanceFinancialEval,
			ActionBOQEdit,
			ActionBOQImport,
			ActionQuotationCreate,
			ActionQuotationNegotiate,
			ActionQuotationApprove,
			ActionQuotationReject,
			ActionQuotationReactivate,
			ActionQuotationCancelApproval,
			ActionQuotationImportPricing,
			ActionContractView,
		},
		RoleProjectManager: {
			ActionAdvanceExecution,
			ActionDisbRequestCreate,
			ActionDisbRequestSubmit,
			ActionDisbOrderCreate,
			ActionContractView,
			ActionAttachmentAdd,
		},
		RoleAccountant: {
			ActionDisbRequestApprove,
			ActionDisbRequestReject,
			ActionDisbOrderCreate,
			ActionDisbOrderApprove,
			ActionDisbOrderExecute,
			ActionDisbOrderReject,
			ActionContractView,
		},
	}

	table := make(map[Role]map[Action]struct{}, len(grants))
	all := make(map[Action]struct{})
	for role, actions := range grants {
		set := make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			set[a] = struct{}{}
			all[a] = struct{}{}
		}
		table[role] = set
	}
	// Admin may invoke every known action.
	adminActions := []Action{
		ActionRequestCreate, ActionRequestSetStatus, ActionRequestReopen,
		ActionAdvanceSubmitted, ActionAdvanceInitialReview, ActionAdvanceFieldVisit,
		ActionAdvanceTechnicalEval, ActionAdvanceFinancialEval, ActionAdvanceExecution,
		ActionBOQEdit, ActionBOQImport,
		ActionQuotationCreate, ActionQuotationNegotiate, ActionQuotationApprove,
		ActionQuotationReject, ActionQuotationReactivate, ActionQuotationCancelApproval,
		ActionQuotationImportPricing,
		ActionDisbRequestCreate, ActionDisbRequestSubmit, ActionDisbRequestApprove,
		ActionDisbRequestReject,
		ActionDisbOrderCreate, ActionDisbOrderApprove, ActionDisbOrderExecute,
		ActionDisbOrderReject,
		ActionAttachmentAdd, ActionMosqueManage, ActionContractView,
		ActionContractManage,
	}
	adminSet := make(map[Action]struct{}, len(adminActions))
	for _, a := range adminActions {
		adminSet[a] = struct{}{}
	}
	table[RoleAdmin] = adminSet
	return &Gate{table: table}
}

// Allow returns nil when the role may invoke the action, otherwise a
// Forbidden failure naming the action.
func (g *Gate) Allow(role Role, action Action) error {
	if set, ok := g.table[role]; ok {
		if _, ok := set[action]; ok {
			return nil
		}
	}
	return shared.Failf(shared.ErrForbidden, "role %q may not perform %q", role, action)
}

// Allows reports the decision without constructing an error.
func (g *Gate) Allows(role Role, action Action) bool {
	return g.Allow(role, action) == nil
}
