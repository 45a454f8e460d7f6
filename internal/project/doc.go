// Package project manages Projects, the ownership root for areas and
// devices.
//
// Every project belongs to one user. Non-admin callers only ever see or
// change their own projects, and the area and device services use
// CheckAccess to extend that rule to everything inside a project.
package project
