package mcpserver

// ContentFormat describes the storage format of memo content that LLM
// consumers should follow when creating or updating memos.
const ContentFormat = `# Memo Content Format

Memo content is plain UTF-8 text with a small set of markers. Anything that
is not a marker is kept as literal text. Content that parses to nothing is
rejected.

## Blocks

- Blocks are separated by one blank line.
- A paragraph is a run of text. Use ` + "`\\`" + ` at the end of a line for a line
  break inside the same paragraph.
- An empty paragraph between blocks is written ` + "`&nbsp;`" + `.
- List items are one per line, with no blank line between items of the same list:
  - ` + "`- item`" + ` for a bulleted list
  - ` + "`1. item`" + ` for a numbered list (numbers are rewritten to count from 1)
  - ` + "`- [ ] item`" + ` and ` + "`- [x] item`" + ` for a task list
- Lists do not nest. Headings, quotes and code blocks are not supported.

## Inline

- Bold: ` + "`**text**`" + `.
- Memo link: ` + "`@[label](id)`" + ` where id is the numeric id of another memo.
  Use ` + "`search_memos`" + ` or ` + "`list_memos`" + ` to find ids. Links to missing memos are kept
  but ignored when links are resolved.
- Tag: ` + "`#label`" + ` when the label is only letters, digits, ` + "`_`" + `, ` + "`-`" + ` and ` + "`/`" + `;
  otherwise ` + "`#[label with spaces]`" + `.
- Image: a bare ` + "`https://...png`" + ` (or jpg, jpeg, gif, webp, svg) URL is shown as an image.

## Escaping

Prefix with a backslash to keep as literal text:

- ` + "`\\`" + `, ` + "`*`" + `, ` + "`#`" + ` and ` + "`&`" + ` anywhere
- ` + "`@`" + ` when followed by ` + "`[`" + `
- ` + "`]`" + ` inside a link label or bracketed tag
- a leading ` + "`-`" + `, ` + "`[`" + ` or the ` + "`.`" + ` of a leading number that is not meant as a list

## Example

` + "```" + `
Weekly sync with @[Ann](12) #meetings

1. review **Q3 plan**
2. update #[road map]

- [x] book room
- [ ] send notes to @[Team page](7)

Budget is 5\*3 \&co.
` + "```" + `
`
