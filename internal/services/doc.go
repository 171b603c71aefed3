// Package services holds the error taxonomy and context annotation shared by
// the external collaborator clients and the workflow manager.
package services
