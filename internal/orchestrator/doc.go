// Package orchestrator drives one multimodal response from request to
// document.
//
// A Manager plans the request into typed subtasks, optionally refines each
// subtask's prompt, dispatches it to the backend that owns its capability and
// assembles the successful results in plan order. Text and diagram subtasks
// go to the text backend; image subtasks go to the image backend.
//
// A failing subtask never aborts the response. Its error is recorded in
// Result.Failures and its slot is left out of the document. Only planning
// failures and cancellation end a response without a document.
//
// Example usage:
//
//	m, err := orchestrator.New(orchestrator.RequiredConfig{
//		Planner: planner.New(textBackend, planner.DefaultConfig(), log),
//		Text:    textBackend,
//		Image:   imageBackend,
//	}, orchestrator.WithLogger(log))
//	res, err := m.GenerateResponse(ctx, "Explain how volcanoes form", true)
package orchestrator
