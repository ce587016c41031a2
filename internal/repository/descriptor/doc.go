// Package descriptor reads a plugin project's package.json into a plugin.Descriptor.
package descriptor
