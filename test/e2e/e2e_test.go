//go:build e2e

package e2e

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/wikidex/internal/service"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestIngestThenQuery(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	env.Wiki.AddSpace("ENG", "Engineering")
	env.Wiki.AddPage("ENG", "100", "Deployment guide",
		"<p>Deployments run through the release pipeline every Tuesday.</p>",
		base.Add(-48*time.Hour), base.Add(-24*time.Hour))
	env.Wiki.AddPage("ENG", "200", "Incident runbook",
		"<p>Page the on-call engineer and open an incident channel.</p>",
		base.Add(-48*time.Hour), base.Add(-24*time.Hour))
	env.Wiki.AddComment("100", "c1", "<p>Remember the staging check.</p>", base.Add(-time.Hour))

	require.NoError(t, env.Ingest.IngestAllSpaces(env.Ctx))

	// One chunk document per page, chunk 0 holding metadata.
	require.Len(t, env.Index.Docs, 2)
	doc := env.Index.Docs["100-0"]
	assert.True(t, doc.MetadataHolder)
	assert.Equal(t, []string{"Remember the staging check."}, doc.Comments)

	status, resp, err := env.GetQA("deployment pipeline")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "deployment pipeline", resp.Question)
	assert.NotEmpty(t, resp.Answer)
	require.NotEmpty(t, resp.Sources)
	assert.Contains(t, resp.Sources[0], "/pages/")
}

func TestSyncAppendsNewComment(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	env.Wiki.AddSpace("ENG", "Engineering")
	env.Wiki.AddPage("ENG", "100", "Deployment guide",
		"<p>Deployments run through the release pipeline.</p>",
		base.Add(-48*time.Hour), base.Add(-24*time.Hour))

	require.NoError(t, env.Ingest.IngestAllSpaces(env.Ctx))
	require.NoError(t, env.Watermarks.Save(base))

	// A comment lands after the watermark; the page itself is unchanged.
	env.Wiki.AddComment("100", "c-new", "<p>Rollback steps added below.</p>", base.Add(time.Second))

	require.NoError(t, env.Sync.SyncSpace(env.Ctx, "ENG"))

	doc := env.Index.Docs["100-0"]
	assert.Equal(t, []string{"Rollback steps added below."}, doc.Comments)

	// A second pass finds nothing newer than the advanced watermark.
	require.NoError(t, env.Sync.SyncSpace(env.Ctx, "ENG"))
	doc = env.Index.Docs["100-0"]
	assert.Equal(t, []string{"Rollback steps added below."}, doc.Comments)
}

func TestQueryWithEmptyIndex(t *testing.T) {
	env := SetupE2EEnv(t)
	defer env.Cleanup()

	status, resp, err := env.GetQA("anything at all")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, service.NoResultsAnswer, resp.Answer)
	assert.Empty(t, resp.Sources)
}
