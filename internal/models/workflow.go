package models

// Transition is a single permitted edge in a document workflow.
type Transition struct {
	From  DocumentStatus
	To    DocumentStatus
	Actor Actor
}

// Workflow describes the legal states and role-gated edges of one document kind.
type Workflow struct {
	Kind        DocumentKind
	Initial     DocumentStatus
	States      []DocumentStatus
	Transitions []Transition
}

// Workflows holds the state machine of every document kind.
var Workflows = map[DocumentKind]Workflow{
	DocumentKindAssignment: {
		Kind:    DocumentKindAssignment,
		Initial: StatusDraft,
		States: []DocumentStatus{
			StatusDraft,
			StatusSubmitted,
			StatusApproved,
			StatusRevisionRequested,
		},
		Transitions: []Transition{
			{From: StatusDraft, To: StatusSubmitted, Actor: ActorStudent},
			{From: StatusRevisionRequested, To: StatusSubmitted, Actor: ActorStudent},
			{From: StatusSubmitted, To: StatusApproved, Actor: ActorSupervisor},
			{From: StatusSubmitted, To: StatusRevisionRequested, Actor: ActorSupervisor},
		},
	},
	DocumentKindTopicRegistration: {
		Kind:    DocumentKindTopicRegistration,
		Initial: StatusDraft,
		States: []DocumentStatus{
			StatusDraft,
			StatusSubmitted,
			StatusApproved,
			StatusNeedsRevision,
			StatusHeadApproved,
			StatusRejected,
		},
		Transitions: []Transition{
			{From: StatusDraft, To: StatusSubmitted, Actor: ActorStudent},
			{From: StatusNeedsRevision, To: StatusSubmitted, Actor: ActorStudent},
			{From: StatusSubmitted, To: StatusApproved, Actor: ActorSupervisor},
			{From: StatusSubmitted, To: StatusNeedsRevision, Actor: ActorSupervisor},
			{From: StatusSubmitted, To: StatusRejected, Actor: ActorSupervisor},
			{From: StatusApproved, To: StatusHeadApproved, Actor: ActorDepartmentHead},
			{From: StatusApproved, To: StatusNeedsRevision, Actor: ActorDepartmentHead},
			{From: StatusApproved, To: StatusRejected, Actor: ActorDepartmentHead},
		},
	},
}

// WorkflowFor returns the workflow of kind.
func WorkflowFor(kind DocumentKind) (Workflow, bool) {
	wf, ok := Workflows[kind]
	return wf, ok
}

// HasState reports whether status is one of the workflow's states.
func (w Workflow) HasState(status DocumentStatus) bool {
	for _, s := range w.States {
		if s == status {
			return true
		}
	}
	return false
}

// Targets lists the statuses actor may move a document to from the current status.
func (w Workflow) Targets(actor Actor, from DocumentStatus) []DocumentStatus {
	var targets []DocumentStatus
	for _, t := range w.Transitions {
		if t.Actor == actor && t.From == from {
			targets = append(targets, t.To)
		}
	}
	return targets
}

// Allows reports whether actor may move a document from one status to another.
func (w Workflow) Allows(actor Actor, from, to DocumentStatus) bool {
	for _, target := range w.Targets(actor, from) {
		if target == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves status.
func (w Workflow) Terminal(status DocumentStatus) bool {
	for _, t := range w.Transitions {
		if t.From == status {
			return false
		}
	}
	return true
}
