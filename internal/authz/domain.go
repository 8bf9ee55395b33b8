package authz

// Role is a high-level permission grouping carried by the authenticated
// actor. The identity collaborator resolves it; the gate never looks it up.
type Role string

const (
	RoleAdmin              Role = "admin"
	RoleSupervisor         Role = "supervisor"
	RoleReviewer           Role = "reviewer"
	RoleFieldEngineer      Role = "field_engineer"
	RoleTechnicalCommittee Role = "technical_committee"
	RoleFinancialOfficer   Role = "financial_officer"
	RoleProjectManager     Role = "project_manager"
	RoleAccountant         Role = "accountant"
	RoleRequester          Role = "requester"
)

// Action is an atomic capability consulted once per mutating operation.
type Action string

const (
	// Stage-exit transitions of the request pipeline.
	ActionAdvanceSubmitted     Action = "request.advance.submitted"
	ActionAdvanceInitialReview Action = "request.advance.initial_review"
	ActionAdvanceFieldVisit    Action = "request.advance.field_visit"
	ActionAdvanceTechnicalEval Action = "request.advance.technical_eval"
	ActionAdvanceFinancialEval Action = "request.advance.financial_eval"
	ActionAdvanceExecution     Action = "request.advance.execution"

	ActionRequestCreate    Action = "request.create"
	ActionRequestSetStatus Action = "request.set_status"
	ActionRequestReopen    Action = "request.reopen"

	ActionBOQEdit   Action = "boq.edit"
	ActionBOQImport Action = "boq.import"

	ActionQuotationCreate         Action = "quotation.create"
	ActionQuotationNegotiate      Action = "quotation.negotiate"
	ActionQuotationApprove        Action = "quotation.approve"
	ActionQuotationReject         Action = "quotation.reject"
	ActionQuotationReactivate     Action = "quotation.reactivate"
	ActionQuotationCancelApproval Action = "quotation.cancel_approval"
	ActionQuotationImportPricing  Action = "quotation.import_pricing"

	ActionDisbRequestCreate  Action = "disbursement.request.create"
	ActionDisbRequestSubmit  Action = "disbursement.request.submit"
	ActionDisbRequestApprove Action = "disbursement.request.approve"
	ActionDisbRequestReject  Action = "disbursement.request.reject"

	ActionDisbOrderCreate  Action = "disbursement.order.create"
	ActionDisbOrderApprove Action = "disbursement.order.approve"
	ActionDisbOrderExecute Action = "disbursement.order.execute"
	ActionDisbOrderReject  Action = "disbursement.order.reject"

	ActionAttachmentAdd  Action = "attachment.add"
	ActionMosqueManage   Action = "mosque.manage"
	ActionContractView   Action = "contract.view"
	ActionContractManage Action = "contract.manage"
)
