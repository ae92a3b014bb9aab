// Package core defines the shared contracts of the routing core: the
// conversation message model, the Agent and Classifier interfaces, the
// conversation store contract, the retriever collaborator and the error
// taxonomy. Higher level packages (agent, classifier, storage, tool and
// the root orchestrator) depend on core; core depends only on the
// standard library.
package core
