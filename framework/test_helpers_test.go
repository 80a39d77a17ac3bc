package framework

func strPtr(v string) *string     { return &v }
func floatPtr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool        { return &v }

func filledSlots() Slots {
	return Slots{
		Debt:        floatPtr(12000),
		FirstName:   strPtr("Ada"),
		LastName:    strPtr("Lovelace"),
		Zip:         strPtr("30301"),
		Phone:       strPtr("4045550134"),
		Email:       strPtr("ada@example.com"),
		City:        strPtr("Atlanta"),
		State:       strPtr("GA"),
		Address:     strPtr("10 Peachtree St"),
		DateOfBirth: strPtr("1990-12-10"),
	}
}
