package dig_container

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/ud-systems/UD-Leads-sub001/apps/api/echo"
	"github.com/ud-systems/UD-Leads-sub001/core"
	"github.com/ud-systems/UD-Leads-sub001/services/scheduler"
)

func TestNew_memoryEngine(t *testing.T) {
	t.Setenv("ENV", "TEST")
	t.Setenv("TEST_DATABASE_ENGINE", core.DBEngineMemory)
	t.Setenv("TEST_REDIS_ADDRESS", "")

	c := New()
	err := c.Invoke(func(conf *core.Config, server *echoapi.Server, sched *scheduler.Scheduler, closer DBCloserParam) {
		assert.Equal(t, core.DBEngineMemory, conf.Database.Engine)
		assert.True(t, conf.TestMode)
		assert.NotNil(t, sched)
		// the in-process cache is swept by the scheduler
		assert.NoError(t, sched.RunNow(context.Background(), scheduler.JobCacheSweep))

		rec := httptest.NewRecorder()
		server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)

		assert.NoError(t, closer.Close())
	})
	require.NoError(t, err)
}
