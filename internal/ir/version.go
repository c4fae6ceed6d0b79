package ir

// ToolVersion is the noddymc release, recorded with every experiment.
const ToolVersion = "0.1.0"
