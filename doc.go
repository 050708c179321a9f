// Package taskgraph is a persistent, content-addressed task graph
// scheduler for workflows whose units of work are deterministic functions
// that produce files on disk.
//
// Callers register task functions by a stable qualified name, then submit
// tasks describing a function plus arguments, declared file outputs, and
// upstream dependencies. The graph executes ready tasks under a worker
// budget and skips any task whose fingerprint matches a completion already
// recorded in the workspace's durable store, so a re-run of an unchanged
// workflow is a no-op.
//
//	taskgraph.Register("myapp.render", renderFn)
//
//	tg, err := taskgraph.New(workspace, 4)
//	if err != nil { ... }
//	defer tg.Terminate()
//
//	t, err := tg.AddTask(
//		taskgraph.WithFunc(taskgraph.FuncID{QualifiedName: "myapp.render", SourceHash: "v1"}),
//		taskgraph.WithArgs(taskgraph.Seq(taskgraph.Path("scene.json"))),
//		taskgraph.WithTargetPaths("out/frame.png"),
//	)
//
//	_ = tg.Close()
//	ok, err := tg.Join(ctx)
//
// Binaries that run with one or more worker processes must call RunWorker
// at the top of main, before anything else; it returns immediately in the
// parent process and never returns in a worker child.
package taskgraph
