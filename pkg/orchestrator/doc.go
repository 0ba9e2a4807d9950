// Package orchestrator runs one hashtag scrape end to end.
//
// The steps are exposed individually (Submit, AwaitCompletion, FetchDataset
// and TransformAndPersist) and composed by Run, which always returns a
// Result. A remote failure, a failed run, a timed out wait and a
// legitimately empty dataset are reported as distinct outcomes, and only a
// persisted outcome leaves a file behind.
package orchestrator
