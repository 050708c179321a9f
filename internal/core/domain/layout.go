package domain

// DatabaseFileName is the name of the single embedded MemoStore file created
// inside a TaskGraph's workspace directory.
const DatabaseFileName = "taskgraph.db"
