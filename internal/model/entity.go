// Package model holds the students and groups that the engine places on the week.
package model

import (
	"errors"
	"fmt"
	"strings"

	"scheduler/internal/interval"
)

// ErrAlreadyGrouped is returned when a student is added to a second group.
var ErrAlreadyGrouped = errors.New("student already belongs to another group")

// Kinds reported by Schedulable.Kind.
const (
	KindStudent = "student"
	KindGroup   = "group"
)

// Schedulable is anything the engine can place: it needs a label for the
// calendar, a weekly duration and a school context.
type Schedulable interface {
	Kind() string
	Label() string
	RequiredMinutes() int
	SchoolName() string
}

// Student is a single served entity. Options are ordered by preference and
// each option's payload is the Weekday it falls on.
type Student struct {
	Name    string
	Grade   int
	School  string
	Minutes int
	Group   *Group
	Options []interval.Interval
}

// NewStudent creates a student without options.
func NewStudent(name string, grade int, school string, minutes int) *Student {
	return &Student{Name: name, Grade: grade, School: school, Minutes: minutes}
}

// AddOption appends a candidate window on day.
func (s *Student) AddOption(day Weekday, window interval.Interval) {
	s.Options = append(s.Options, window.WithData(day))
}

func (s *Student) Kind() string         { return KindStudent }
func (s *Student) Label() string        { return s.Name }
func (s *Student) RequiredMinutes() int { return s.Minutes }
func (s *Student) SchoolName() string   { return s.School }

func (s *Student) String() string {
	group := "none"
	if s.Group != nil {
		group = s.Group.Name
	}
	return fmt.Sprintf("<Student(%q, grade=%d, group=%s)>", s.Name, s.Grade, group)
}

// Group is a set of students served together in one common slot. The group
// owns its member list; members point back to it.
type Group struct {
	Name    string
	School  string
	Minutes int
	Members []*Student
}

// NewGroup creates an empty group.
func NewGroup(name, school string, minutes int) *Group {
	return &Group{Name: name, School: school, Minutes: minutes}
}

// Add makes s a member of g. Adding a member twice is a no-op.
func (g *Group) Add(s *Student) error {
	if s.Group != nil && s.Group != g {
		return fmt.Errorf("%w: %s is in %q, cannot join %q", ErrAlreadyGrouped, s.Name, s.Group.Name, g.Name)
	}
	if s.Group == g {
		return nil
	}
	s.Group = g
	g.Members = append(g.Members, s)
	return nil
}

func (g *Group) Kind() string         { return KindGroup }
func (g *Group) Label() string        { return "Group - " + g.Name }
func (g *Group) RequiredMinutes() int { return g.Minutes }
func (g *Group) SchoolName() string   { return g.School }

func (g *Group) String() string {
	names := make([]string, len(g.Members))
	for i, m := range g.Members {
		names[i] = m.Name
	}
	return fmt.Sprintf("Group - %s [%s]", g.Name, strings.Join(names, ", "))
}
