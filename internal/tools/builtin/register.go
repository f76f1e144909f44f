package builtin

import (
	"go.uber.org/zap"

	"github.com/taskd/taskd/internal/tools"
)

// RegisterDefaults registers every built-in tool handler (§4.6) onto the
// coordinator. It does not register the MCP meta-tools or the dynamic MCP
// bridge — those are wired separately since they depend on an mcpmanager.Manager.
func RegisterDefaults(coord *tools.Coordinator, logger *zap.Logger) {
	coord.Register(&ReadFileHandler{})
	coord.Register(NewListFilesHandler())
	coord.Register(&WriteToFileHandler{})
	coord.Register(&ReplaceInFileHandler{})
	coord.Register(NewSearchFilesHandler())
	coord.Register(&ListCodeDefinitionsHandler{})
	coord.Register(&GitStatusHandler{})
	coord.Register(&GitLogHandler{})
	coord.Register(&GitDiffHandler{})
	coord.Register(&GitBranchHandler{})
	coord.Register(&AttemptCompletionHandler{Logger: logger})
}
