/*
Package flowpipe composes independent processing stages into a directed
graph of typed, queued edges and drives them to completion.

# Overview

A pipeline is made of processes. Each process declares named, typed input
and output ports. An edge connects one output port to one input port and
queues stamped datums between them. The scheduler steps every process,
aligns the datums of its inputs, forwards control datums and detects when
the whole pipeline has finished.

A datum is one of:
  - data: a payload
  - empty: no value this cycle
  - error: a recoverable failure carried in place of data
  - complete: nothing more will follow on the edge

Every datum travels with a stamp. Its color identifies the cycle: sources
advance the color on every step and downstream processes keep the color of
the inputs they consumed, so datums that belong together share a color.

# Basic Usage

	p := flowpipe.NewPipeline()
	if err := p.AddProcess("numbers", processes.NewSliceSource("int", 1, 2, 3)); err != nil {
	    log.Fatal(err)
	}
	if err := p.AddProcess("double", processes.NewMap("int", "int", func(n int) (int, error) {
	    return 2 * n, nil
	})); err != nil {
	    log.Fatal(err)
	}
	sink := processes.NewCollector[int]("int")
	if err := p.AddProcess("sink", sink); err != nil {
	    log.Fatal(err)
	}
	if _, err := p.Connect("numbers.out", "double.in"); err != nil {
	    log.Fatal(err)
	}
	if _, err := p.Connect("double.out", "sink.in"); err != nil {
	    log.Fatal(err)
	}

	compiled, err := p.Compile()
	if err != nil {
	    log.Fatal(err)
	}

	ctx := flowpipe.NewContext(context.Background())
	if _, err := compiled.Run(ctx); err != nil {
	    log.Fatal(err)
	}
	fmt.Println(sink.Values()) // [2 4 6]

# Step Rules

Before calling Step, the scheduler pops one datum from every synchronized
input (required and not no-dependency) and resolves the dominant kind:
error > complete > empty > data. Only data reaches Step. Error and empty
are forwarded to every output; complete retires the process and is
forwarded too. Optional and no-dependency inputs are read only if a datum
is already queued.

A process ends itself by calling StepContext.MarkComplete. Sources, which
have no connected inputs, end the pipeline this way.

# Feedback

A cycle of edges is only valid when at least one edge ends in a
no-dependency input (FlagNoDep). Such edges are ignored for scheduling
order and synchronization:

	_, _ = p.Connect("sum.out", "delay.in")
	_, _ = p.Connect("delay.out", "sum.b") // sum.b is declared with FlagNoDep

# Scheduling

The cooperative discipline (default) steps ready processes one at a time
in topological order and is deterministic. The concurrent discipline runs
every process on its own goroutine with blocking edges:

	result, err := compiled.Run(ctx, flowpipe.WithScheduler(flowpipe.DisciplineConcurrent))

# Error Handling

A Step error becomes an error datum for that cycle unless it is
categorized fatal with errors.Fatal; panics are always fatal. The first
fatal error stops the run and is returned as a *ProcessError or
*PanicError naming the process. Compile reports every structural problem
at once, joined with errors.Join.

# Observability

	result, err := compiled.Run(ctx,
	    flowpipe.WithObservabilityLogger(logger),
	    flowpipe.WithMetrics(true),
	    flowpipe.WithTracing(true),
	    flowpipe.WithPrometheus(prometheus.DefaultRegisterer),
	    flowpipe.WithRunStore(store),
	)

See the observability and runstore packages.
*/
package flowpipe
