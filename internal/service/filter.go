package service

import "github.com/clipforge/clipforge/internal/store/model"

type JobFilterFunc func(f *JobFilter)

type JobFilter struct {
	OwnerID string
	States  []model.JobState
	Limit   int
}

func NewJobFilter(filters ...JobFilterFunc) *JobFilter {
	f := &JobFilter{}
	for _, fn := range filters {
		fn(f)
	}
	return f
}

func (f *JobFilter) WithOption(o JobFilterFunc) *JobFilter {
	o(f)
	return f
}

func WithOwnerID(ownerID string) JobFilterFunc {
	return func(f *JobFilter) {
		f.OwnerID = ownerID
	}
}

func WithStates(states ...model.JobState) JobFilterFunc {
	return func(f *JobFilter) {
		f.States = append(f.States, states...)
	}
}

func WithLimit(limit int) JobFilterFunc {
	return func(f *JobFilter) {
		f.Limit = limit
	}
}
