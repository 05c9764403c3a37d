/*
Package domain contains the core types of the cogflow engine.

It describes prompt schemas (Fields, Formats, Prompts and Programs), the typed data
tree collected while a prompt runs, run records, and the errors raised by the
builders and the generation engine. The package is free of I/O and persistence.

# Key Entities

  - Field: one node of a prompt schema. Fields are listed in pre-order and annotated
    with their depth and sibling index.
  - Format: how a leaf field's value is produced (open text, enum, choice over a list).
  - Prompt: the field list plus its channels (where known data comes from) and flows
    (which prompt runs next, or which fields are returned).
  - Node: the typed data tree (Scalar, List, Record) addressed by field paths.
  - RunRecord: the persisted trace of one program run.
*/
package domain
