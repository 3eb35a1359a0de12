package backlinks_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/dddot/internal/bridge"
	"github.com/starford/dddot/internal/render"
	"github.com/starford/dddot/internal/settings"
	"github.com/starford/dddot/internal/testutil"
	"github.com/starford/dddot/internal/tool"
	"github.com/starford/dddot/internal/tool/backlinks"
)

func TestBacklinks(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(t, map[string]string{
		"target.md": "# Target\n",
		"one.md":    "# One\n[[target]]\n",
		"two.md":    "# Two\n[[target|alias]]\n",
		"other.md":  "# Other\n",
	})
	emitter := &testutil.Emitter{}
	bt := backlinks.New(tool.Deps{Settings: settings.NewMemory(), Notes: env.Notes, Emitter: emitter, Logger: env.Logger})
	require.NoError(t, bt.Start(ctx))
	defer bt.Stop()

	res, err := bt.Respond(ctx, bridge.NewMessage("backlinks.onReady", nil))
	require.NoError(t, err)
	assert.Empty(t, res, "no selection yields an empty list")

	require.NoError(t, env.Notes.SelectNote(ctx, "target.md"))
	refreshes := emitter.Messages("backlinks.refresh")
	require.Len(t, refreshes, 1)

	raw, ok := refreshes[0].Field("links")
	require.True(t, ok)
	var views []render.LinkView
	require.NoError(t, json.Unmarshal(raw, &views))
	require.Len(t, views, 2)
	assert.Equal(t, "One", views[0].Title)
	assert.Equal(t, "Two", views[1].Title)

	env.Write(t, "other.md", "# Other\n[[target]]\n")
	refreshes = emitter.Messages("backlinks.refresh")
	require.Len(t, refreshes, 2)
	raw, _ = refreshes[1].Field("links")
	require.NoError(t, json.Unmarshal(raw, &views))
	assert.Len(t, views, 3)

	bt.Stop()
	require.NoError(t, env.Notes.SelectNote(ctx, "one.md"))
	assert.Len(t, emitter.Messages("backlinks.refresh"), 2, "no refresh after stop")
}
