package pyramid

import "pyramid.gg/internal/protocol"

const (
	IntentTypeInvest   = "INVEST"
	IntentTypeWithdraw = "WITHDRAW_INVESTMENT"
	IntentTypeCoup     = "ATTEMPT_COUP"
	IntentTypeMoveUp   = "MOVE_UP"
	IntentTypeRecruit  = "RECRUIT"
	IntentTypeSay      = "SAY"
)

type intentHandler func(*Network, *Node, protocol.IntentReq, uint64)

var intentDispatch = map[string]intentHandler{
	IntentTypeInvest:   handleIntentInvest,
	IntentTypeWithdraw: handleIntentWithdraw,
	IntentTypeCoup:     handleIntentCoup,
	IntentTypeMoveUp:   handleIntentMoveUp,
	IntentTypeRecruit:  handleIntentRecruit,
	IntentTypeSay:      handleIntentSay,
}
