package recentnotes_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/dddot/internal/bridge"
	"github.com/starford/dddot/internal/models"
	"github.com/starford/dddot/internal/noteservice"
	"github.com/starford/dddot/internal/render"
	"github.com/starford/dddot/internal/settings"
	"github.com/starford/dddot/internal/testutil"
	"github.com/starford/dddot/internal/tool"
	"github.com/starford/dddot/internal/tool/recentnotes"
)

var vault = map[string]string{
	"a.md":          "# Alpha\n",
	"b.md":          "# Beta\n",
	"c.md":          "# Gamma\n",
	"inbox/todo.md": "---\ntitle: Buy milk\ntodo: true\n---\n",
}

type fixture struct {
	env     *testutil.Env
	store   settings.Store
	emitter *testutil.Emitter
	tool    *recentnotes.Tool
	ctx     context.Context
}

func setup(t *testing.T, seed map[string]any) *fixture {
	t.Helper()
	ctx := context.Background()
	env := testutil.NewEnv(t, vault)
	store := settings.NewMemory()
	for k, v := range seed {
		require.NoError(t, settings.Save(ctx, store, k, v))
	}
	emitter := &testutil.Emitter{}
	rt := recentnotes.New(tool.Deps{Settings: store, Notes: env.Notes, Emitter: emitter, Logger: env.Logger})
	require.NoError(t, rt.Start(ctx))
	t.Cleanup(rt.Stop)
	return &fixture{env: env, store: store, emitter: emitter, tool: rt, ctx: ctx}
}

func ids(links []models.Link) []string {
	out := make([]string, len(links))
	for i, l := range links {
		out[i] = l.ID
	}
	return out
}

func refreshedTitles(t *testing.T, msg bridge.Message) []string {
	t.Helper()
	raw, ok := msg.Field("links")
	require.True(t, ok)
	var views []render.LinkView
	require.NoError(t, json.Unmarshal(raw, &views))
	out := make([]string, len(views))
	for i, v := range views {
		out[i] = v.Title
	}
	return out
}

func onReady(t *testing.T, f *fixture) []render.LinkView {
	t.Helper()
	res, err := f.tool.Respond(f.ctx, bridge.NewMessage("recentnotes.onReady", nil))
	require.NoError(t, err)
	views, ok := res.([]render.LinkView)
	require.True(t, ok)
	return views
}

func TestStart_RehydratesAndDropsUnknownKinds(t *testing.T) {
	f := setup(t, map[string]any{
		recentnotes.ContentSetting: []map[string]any{
			{"id": "a.md", "title": "Alpha", "type": "NoteLink"},
			{"id": "x", "title": "X", "type": "Bogus"},
			{"id": "b.md", "title": "Beta", "type": "NoteLink"},
		},
	})
	assert.Equal(t, []string{"a.md", "b.md"}, ids(f.tool.Links()))
}

func TestSelection_InsertsTruncatesSavesAndRefreshes(t *testing.T) {
	f := setup(t, map[string]any{recentnotes.MaxNotesSetting: 2})

	for _, id := range []string{"a.md", "b.md", "c.md", "a.md"} {
		require.NoError(t, f.env.Notes.SelectNote(f.ctx, id))
	}
	assert.Equal(t, []string{"a.md", "c.md"}, ids(f.tool.Links()))

	saved, err := settings.Load(f.ctx, f.store, recentnotes.ContentSetting, []models.Link{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "c.md"}, ids(saved))

	refreshes := f.emitter.Messages("recentnotes.refresh")
	require.Len(t, refreshes, 4)
	assert.Equal(t, []string{"Alpha", "Gamma"}, refreshedTitles(t, refreshes[3]))
}

func TestSelection_TodoFlags(t *testing.T) {
	f := setup(t, nil)
	require.NoError(t, f.env.Notes.SelectNote(f.ctx, "inbox/todo.md"))

	links := f.tool.Links()
	require.Len(t, links, 1)
	assert.True(t, links[0].IsTodo)
	assert.False(t, links[0].IsTodoCompleted)
	assert.Equal(t, "inbox", links[0].ParentID)
}

func TestNoteChange_UpdatesTitleOnlyWhenChanged(t *testing.T) {
	f := setup(t, nil)
	require.NoError(t, f.env.Notes.SelectNote(f.ctx, "a.md"))
	before := len(f.emitter.Messages("recentnotes.refresh"))

	f.env.Write(t, "a.md", "# Alpha\n\nmore text\n")
	assert.Len(t, f.emitter.Messages("recentnotes.refresh"), before, "same title must not refresh")

	f.env.Write(t, "a.md", "# Alpha v2\n")
	refreshes := f.emitter.Messages("recentnotes.refresh")
	require.Len(t, refreshes, before+1)
	assert.Equal(t, []string{"Alpha v2"}, refreshedTitles(t, refreshes[before]))

	f.env.Write(t, "b.md", "# Beta v2\n")
	assert.Len(t, f.emitter.Messages("recentnotes.refresh"), before+1, "notes outside the history are ignored")
}

func TestOnReady_TruncatesToCurrentSetting(t *testing.T) {
	f := setup(t, nil)
	for _, id := range []string{"a.md", "b.md", "c.md"} {
		require.NoError(t, f.env.Notes.SelectNote(f.ctx, id))
	}
	require.NoError(t, settings.Save(f.ctx, f.store, recentnotes.MaxNotesSetting, 1))

	views := onReady(t, f)
	require.Len(t, views, 1)
	assert.Equal(t, "c.md", views[0].ID)
	assert.Equal(t, "dddot.openNote", views[0].OnClick.Type)
	require.NotNil(t, views[0].OnContextMenu)
	assert.Equal(t, "recentnotes.tool.openNoteDetailDialog", views[0].OnContextMenu.Type)
}

func TestRender_ShowFullPath(t *testing.T) {
	f := setup(t, map[string]any{recentnotes.ShowFullPathSetting: true})
	require.NoError(t, f.env.Notes.SelectNote(f.ctx, "inbox/todo.md"))

	views := onReady(t, f)
	require.Len(t, views, 1)
	assert.Equal(t, "inbox/(Buy milk)", views[0].Title)

	persisted, err := settings.LoadRaw(f.ctx, f.store, recentnotes.ContentSetting, nil)
	require.NoError(t, err)
	assert.NotContains(t, string(persisted), "inbox/(Buy milk)")
}

func TestOpenNoteDetailDialog(t *testing.T) {
	f := setup(t, nil)
	res, err := f.tool.Respond(f.ctx, bridge.NewMessage("recentnotes.tool.openNoteDetailDialog", map[string]string{"noteId": "b.md"}))
	require.NoError(t, err)
	detail, ok := res.(*noteservice.NoteDetail)
	require.True(t, ok)
	assert.Equal(t, "Beta", detail.Title)
}

func TestUnknownEventAnswersNull(t *testing.T) {
	f := setup(t, nil)
	res, err := f.tool.Respond(f.ctx, bridge.NewMessage("recentnotes.nope", nil))
	assert.NoError(t, err)
	assert.Nil(t, res)
}

func TestOnReady_InvalidMaxNotesKeepsHistory(t *testing.T) {
	history := []map[string]any{
		{"id": "a.md", "title": "Alpha", "type": "NoteLink"},
		{"id": "b.md", "title": "Beta", "type": "NoteLink"},
	}
	for name, limit := range map[string]any{"null": nil, "zero": 0, "negative": -3} {
		t.Run(name, func(t *testing.T) {
			f := setup(t, map[string]any{
				recentnotes.ContentSetting:  history,
				recentnotes.MaxNotesSetting: limit,
			})
			assert.Len(t, onReady(t, f), 2)

			require.NoError(t, f.env.Notes.SelectNote(f.ctx, "c.md"))
			saved, err := settings.Load(f.ctx, f.store, recentnotes.ContentSetting, []models.Link{})
			require.NoError(t, err)
			assert.Equal(t, []string{"c.md", "a.md", "b.md"}, ids(saved))
		})
	}
}
