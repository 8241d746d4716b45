// Package workflow drives tasks through the processing pipeline.
//
// The engine runs one goroutine per launched task and walks the stages
// fetch, separate, analyze, package. Every transition is persisted through
// the task store, whose terminal guard makes completed, failed, and
// cancelled sticky. Cancellation is cooperative: the engine polls the store
// at checkpoints between stages and stops at the next boundary, and a stage
// failure caused by an interrupting cancellation is suppressed rather than
// recorded.
package workflow
