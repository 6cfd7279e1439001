package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEmpty(t *testing.T) {
	assert.True(t, (Result{}).IsEmpty(), "expected zero-value Result to be empty")
	assert.False(t, (Result{Entities: []Entity{{Name: "x"}}}).IsEmpty(), "expected Result with an entity to be non-empty")
}

func TestDeriveOperations_InstructionForcesStore(t *testing.T) {
	r := Result{Intents: []Intent{IntentInstruction}}
	deriveOperations(&r, "always do X", false)
	assert.True(t, r.Operations.Store, "expected instruction intent to force store=true")
}

func TestDeriveOperations_CorrectionForcesBoth(t *testing.T) {
	r := Result{Intents: []Intent{IntentCorrection}}
	deriveOperations(&r, "actually it's Y not X", false)
	assert.True(t, r.Operations.Store, "expected correction to force store=true")
	assert.True(t, r.Operations.Retrieve, "expected correction to force retrieve=true")
}

func TestDeriveOperations_ImpliedFactsForceStore(t *testing.T) {
	r := Result{ImpliedFacts: []string{"likes tea"}}
	deriveOperations(&r, "I like tea", false)
	assert.True(t, r.Operations.Store, "expected implied facts to force store=true")
}

func TestDeriveOperations_MentionsEntityForcesRetrieve(t *testing.T) {
	r := Result{}
	deriveOperations(&r, "what about Bob", true)
	assert.True(t, r.Operations.Retrieve, "expected entity/question mention to force retrieve=true")
}

func TestDeriveOperations_PlainInformationDoesNotForceStore(t *testing.T) {
	r := Result{Intents: []Intent{IntentInformation}}
	deriveOperations(&r, "the weather is nice", false)
	assert.False(t, r.Operations.Store, "expected plain information intent to not force store")
	assert.True(t, r.Operations.Retrieve, "expected information intent to force retrieve")
}
