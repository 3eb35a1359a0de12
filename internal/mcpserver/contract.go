package mcpserver

// MessageContract describes the messages the panel and the host exchange,
// so an LLM client can reason about what the panel shows and how it reacts.
const MessageContract = `# dddot Panel Message Contract

The side panel and the host exchange JSON messages tagged by a dot-namespaced
type: ` + "`" + `{"type": "<namespace>.<event>", ...fields}` + "`" + `.

## Panel → host requests

| Type | Fields | Answer |
|---|---|---|
| ` + "`" + `dddot.getSections` + "`" + ` | none | sections and default order |
| ` + "`" + `dddot.openNote` + "`" + ` | ` + "`" + `noteId` + "`" + ` | null; the note becomes selected |
| ` + "`" + `dddot.openFolder` + "`" + ` | ` + "`" + `folderId` + "`" + ` | the folder |
| ` + "`" + `dddot.onSectionOrderChanged` + "`" + ` | ` + "`" + `order` + "`" + ` | null; persisted for the next mount |
| ` + "`" + `<tool>.onReady` + "`" + ` | none | the tool's initial links |
| ` + "`" + `recentnotes.tool.openNoteDetailDialog` + "`" + ` | ` + "`" + `noteId` + "`" + ` | note detail |
| ` + "`" + `shortcuts.tool.addNote` + "`" + ` | ` + "`" + `noteId` + "`" + ` | null |
| ` + "`" + `shortcuts.tool.addFolder` + "`" + ` | ` + "`" + `folderId` + "`" + ` | null |
| ` + "`" + `shortcuts.tool.addCurrentNote` + "`" + ` | none | null |
| ` + "`" + `shortcuts.tool.removeLink` + "`" + ` | ` + "`" + `id` + "`" + ` | null |

Failures and unknown types answer null.

## Host → panel events

` + "`" + `<tool>.refresh` + "`" + ` with ` + "`" + `links` + "`" + `: the full list of rendered links of
the section. It replaces the section's ` + "`" + `links` + "`" + ` view prop; other props and
other sections are untouched.

## Tools

- ` + "`" + `recentnotes` + "`" + `: the most recently selected notes, newest first. Limited by
  ` + "`" + `dddot.settings.recentnotes.maxnotes` + "`" + ` (default 5).
- ` + "`" + `shortcuts` + "`" + `: notes and folders pinned by the user.
- ` + "`" + `backlinks` + "`" + `: notes linking to the selected note.

## Link ids

Note ids are vault paths with forward slashes (` + "`" + `projects/plan.md` + "`" + `). Folder ids
are directory paths; the vault root is the empty id.
`
