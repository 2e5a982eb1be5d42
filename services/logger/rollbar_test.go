package logsvc

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ud-systems/UD-Leads-sub001/core/user"
)

func TestRollbarLogger_fields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewNopLogger()
	l.zl = zap.New(core)

	err := errors.New("boom")
	l.Error("saving lead", err, user.User{ID: "u1", TenantID: "t1"}, map[string]interface{}{"lead_id": "l1"})

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		e := entries[0]
		assert.Equal(t, "saving lead", e.Message)
		ctx := e.ContextMap()
		assert.Equal(t, "boom", ctx["error"])
		assert.Equal(t, "u1", ctx["user_id"])
		assert.Equal(t, "t1", ctx["tenant_id"])
		assert.Equal(t, "l1", ctx["lead_id"])
	}
}
