package authz

const (
	RoleRosterAuthority = "roster-authority"
	RoleBoardMember     = "board-member"
	RoleAnonymous       = "anonymous"
)

const (
	ActionRead    = "read"
	ActionAdmin   = "admin"
	ActionPropose = "propose"
	ActionApprove = "approve"
)

const DomainGlobal = "global"

const (
	ObjectMultisigRoster  = "multisig.roster"
	ObjectMultisigActions = "multisig.actions"
	ObjectMultisigEvents  = "multisig.events"
)

// DefaultModel matches request domains with "*" policy domains so a single
// policy line covers every board.
const DefaultModel = `
[request_definition]
r = sub, dom, obj, act

[policy_definition]
p = sub, dom, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && (p.dom == "*" || r.dom == p.dom) && r.obj == p.obj && r.act == p.act
`

const DefaultPolicy = `
p, role:roster-authority, *, multisig.roster, admin
p, role:roster-authority, *, multisig.roster, read
p, role:roster-authority, *, multisig.actions, read
p, role:roster-authority, *, multisig.events, read
p, role:board-member, *, multisig.roster, read
p, role:board-member, *, multisig.actions, read
p, role:board-member, *, multisig.actions, propose
p, role:board-member, *, multisig.actions, approve
p, role:board-member, *, multisig.events, read
p, role:anonymous, *, multisig.roster, read
p, role:anonymous, *, multisig.actions, read
p, role:anonymous, *, multisig.events, read
`
