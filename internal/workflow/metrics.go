package workflow

import (
	"expvar"

	"trivia-rewards/internal/rewards"
)

var operationCounters = expvar.NewMap("workflow_operations")

func countOperation(kind rewards.OperationKind, event string) {
	operationCounters.Add(string(kind)+"_"+event, 1)
}
