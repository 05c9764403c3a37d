/*
Package ports defines the driven ports (interfaces) of the cogflow engine.

These interfaces decouple the generation core from the model backend, the run store,
the program source and the orchestrator, so each can be swapped independently.

# Key Interfaces

  - LanguageModel: tokenization and next-token log-probabilities.
  - Cog: anything an orchestrator can invoke (a program entry, an external tool).
  - Orchestrator: executes batches of jobs and returns ordered results.
  - RunStore: persists run records.
  - ProgramLoader: produces a compiled Program (from a YAML file, a Loam repository, ...).
*/
package ports
