package mcpserver

// PostFormatContract describes the layout of a published post so that LLM
// consumers produce content the blog accepts.
const PostFormatContract = `# Blog Post Format Contract

A published post is a Markdown file with a metadata header followed by the body.

## Structure

` + "```" + `markdown
---
title: 'Human readable title'       # file name of the source document, '' for selections
date: '2024-06-01 12:30:00'         # creation time, local clock
lastmod: '2024-06-01 12:30:00'      # refreshed on every publish of the document
tags: []                            # [<default tag>] when the title is empty
draft: false
summary: ''
---
Body text in Markdown.  
Every line ends with two spaces.  
` + "```" + `

## Rules

1. **The header comes first.** The ` + "`" + `---` + "`" + ` fences open the file, no leading blank lines.
2. **Keep an existing header.** Publishing a document that already has a header reuses it;
   only ` + "`" + `lastmod` + "`" + ` changes in the local copy afterwards.
3. **Single-quoted values.** A quote inside a value is doubled: ` + "`" + `'It''s here'` + "`" + `.
4. **Line breaks are preserved.** Two trailing spaces are appended to every body line on
   publish, so a single newline renders as a line break. Do not add them yourself.
5. **Post names** follow the document file name. Selections are named
   ` + "`" + `<default tag>-<yyyyMMddHHmmss>` + "`" + `.

## Images

- Upload images via the ` + "`" + `upload_attachment` + "`" + ` tool. It returns a ` + "`" + `markdown` + "`" + ` field ready to paste into the body.
- ` + "`" + `rewrite_attachments` + "`" + ` uploads every local image a document references, including
  ` + "`" + `![[embed.png]]` + "`" + ` embeds, and rewrites the references.
- Supported formats: png, jpg, jpeg, gif, webp, svg, pdf.

## Example

` + "```" + `markdown
---
title: 'Weekend trip'
date: '2024-06-01 12:30:00'
lastmod: '2024-06-03 08:00:00'
tags: []
draft: false
summary: ''
---
We left early.  
![coast](https://cdn.example.com/blog/202406/coast.jpg)  
` + "```" + `
`
