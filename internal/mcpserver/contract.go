package mcpserver

// HierarchyGuide explains how note tags become folders, so a model can
// turn a question about a topic into the right folder path.
const HierarchyGuide = `# Tag Hierarchy

Notes are flat files. Folders are virtual and come from tags.

## Tags

- A note's tags are one string of tag paths separated by ", "
  (comma and space), e.g. "Work/Projects, Home".
- Each tag path is split on "/" into folder names. Empty segments are skipped,
  so "Work//Projects" and "/Work/Projects" both mean "Work/Projects".
- Names are case sensitive: "Work" and "work" are different folders.

## Folders

- A note is listed directly in the folder of every tag path it carries,
  never in the intermediate folders.
- A folder's bundle (list_folder_files) holds every distinct note reachable
  from it: its own notes plus those of all descendants, sorted by title.
- Notes without tags are listed in the root folder, whose path is "".
- totalUniqueFiles on a folder is the size of its bundle.

## Paths

- Folder paths are the tag segments joined with "/": "Work/Projects".
- Note keys are file names such as "Trip to Rome.html"; pass them to read_note
  exactly as list_folder_files or list_files return them.
`
