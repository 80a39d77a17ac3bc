package tools

import (
	"context"
	"math"

	"github.com/lexcodex/leadline/framework"
)

// minimumEligibleDebt is the cutoff below which a verified debt figure
// disqualifies the customer from the program.
const minimumEligibleDebt = 7500

// Estimate computes the program quote for a debt figure. All dollar amounts
// round to whole dollars; the program length rounds to one decimal of years.
func Estimate(debt float64) framework.SavingsEstimate {
	savings := math.Round(debt * 0.23)
	payment := math.Max(250, math.Round((debt-savings)/48))
	return framework.SavingsEstimate{
		Debt:               debt,
		Savings:            savings,
		Payment:            payment,
		Settlement:         math.Round(debt * 0.5),
		ProgramLengthYears: math.Round(((debt-savings)/payment)/12*10) / 10,
	}
}

// SavingsEstimateTool computes the quote once the customer is an accepted
// lead. No network involved; the formula is deterministic.
type SavingsEstimateTool struct{}

func (t *SavingsEstimateTool) Name() string { return framework.ToolSavingsEstimate }

func (t *SavingsEstimateTool) Description() string {
	return "Calculates the customer's estimated savings, monthly payment, settlement amount, " +
		"and program length. Requires a created lead."
}

func (t *SavingsEstimateTool) Execute(ctx context.Context, state *framework.ConversationState) (*framework.ToolResult, error) {
	if state.LeadCreateComplete == nil {
		return framework.SoftFail("Cannot calculate savings estimate without creating a lead first."), nil
	}
	if !*state.LeadCreateComplete {
		return framework.SoftFail("Not eligible for the program. Cannot calculate savings estimate."), nil
	}
	if !state.Slots.Complete() {
		return framework.SoftFail("Need to collect all the required information to calculate the savings estimate."), nil
	}
	if state.SavingsEstimate != nil {
		return framework.SoftFail("The savings estimate has already been calculated."), nil
	}
	if state.CreditPullComplete == nil {
		return framework.SoftFail("Provide the required information and complete the credit pull and lead creation steps first."), nil
	}
	debt := *state.Slots.Debt
	if *state.CreditPullComplete && debt <= minimumEligibleDebt {
		return framework.SoftFail("The customer is not eligible for the program."), nil
	}
	est := Estimate(debt)
	return &framework.ToolResult{
		Success: true,
		Data: map[string]interface{}{
			"debt":           est.Debt,
			"savings":        est.Savings,
			"payment":        est.Payment,
			"settlement":     est.Settlement,
			"program_length": est.ProgramLengthYears,
		},
	}, nil
}
