package delivery_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinywideclouds/go-push-delivery/internal/delivery"
	"github.com/tinywideclouds/go-push-delivery/pkg/push"
)

func TestClassify(t *testing.T) {
	t.Run("Partitions mixed results", func(t *testing.T) {
		results := []push.TokenResult{
			{Token: "A", Status: push.StatusSuccess},
			{Token: "B", Status: push.StatusPermanentFailure, Reason: "unregistered"},
			{Token: "C", Status: push.StatusTransientFailure, Reason: "quota"},
			{Token: "D", Status: push.StatusSuccess},
		}

		c := delivery.Classify(results)

		assert.Equal(t, 2, c.Successes)
		assert.Equal(t, []string{"B"}, c.Permanent)
		assert.Equal(t, []string{"C"}, c.Transient)
	})

	t.Run("Partition is complete for every input", func(t *testing.T) {
		cases := [][]push.TokenResult{
			nil,
			{{Token: "A", Status: push.StatusSuccess}},
			{
				{Token: "A", Status: push.StatusPermanentFailure},
				{Token: "B", Status: push.StatusPermanentFailure},
				{Token: "C", Status: push.StatusTransientFailure},
			},
		}

		for _, results := range cases {
			c := delivery.Classify(results)
			assert.Equal(t, len(results), c.Successes+len(c.Permanent)+len(c.Transient))
		}
	})
}
