// Package lib groups infrastructure that does not belong to a single
// layer, such as background job processing.
package lib
