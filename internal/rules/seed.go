package rules

// KenyanSeedRules is the fixed regional rule set the registry starts with.
// Declaration order matters: earlier rules win confidence ties.
func KenyanSeedRules() []NamedEntries {
	return []NamedEntries{
		{
			Name: "income",
			Entries: []Entry{
				{Pattern: `salary|payroll|wages`, Category: "INCOME", Subcategory: "SALARY", Confidence: 0.95},
				{Pattern: `dividend|interest\s+(on|earned)`, Category: "INCOME", Subcategory: "INVESTMENT", Confidence: 0.85},
				{Pattern: `refund|reversal`, Category: "INCOME", Subcategory: "REFUND", Confidence: 0.75},
				{Pattern: `funds\s+received|received\s+from`, Category: "INCOME", Subcategory: "TRANSFER_IN", Confidence: 0.8},
			},
		},
		{
			Name: "mobile_money",
			Entries: []Entry{
				{Pattern: `send\s+money|sent\s+to|customer\s+transfer`, Category: "MOBILE_MONEY", Subcategory: "SEND", Confidence: 0.9},
				{Pattern: `receive\s+money`, Category: "MOBILE_MONEY", Subcategory: "RECEIVE", Confidence: 0.9},
				{Pattern: `pay\s*bill|bill\s+payment`, Category: "MOBILE_MONEY", Subcategory: "BILL_PAY", Confidence: 0.85},
				{Pattern: `buy\s+goods|merchant\s+payment|till\s+\d+`, Category: "MOBILE_MONEY", Subcategory: "MERCHANT", Confidence: 0.85},
				{Pattern: `agent\s+withdrawal|withdraw(al)?\s+(at|from)`, Category: "MOBILE_MONEY", Subcategory: "WITHDRAW", Confidence: 0.85},
				{Pattern: `cash\s+in|agent\s+deposit`, Category: "MOBILE_MONEY", Subcategory: "DEPOSIT", Confidence: 0.85},
				{Pattern: `airtime|bundles`, Category: "MOBILE_MONEY", Subcategory: "AIRTIME", Confidence: 0.9},
				{Pattern: `m-?shwari|fuliza|kcb\s+m-?pesa`, Category: "MOBILE_MONEY", Subcategory: "LOAN", Confidence: 0.9},
			},
		},
		{
			Name: "bills",
			Entries: []Entry{
				{Pattern: `kplc|power\s+token|electricity`, Category: "BILLS", Subcategory: "ELECTRICITY", Confidence: 0.9},
				{Pattern: `water\s+(bill|company)|nairobi\s+water`, Category: "BILLS", Subcategory: "WATER", Confidence: 0.85},
				{Pattern: `zuku|safaricom\s+home|internet|wifi`, Category: "BILLS", Subcategory: "INTERNET", Confidence: 0.8},
				{Pattern: `dstv|gotv|netflix|showmax`, Category: "BILLS", Subcategory: "TV", Confidence: 0.85},
				{Pattern: `rent\s+(payment|to)|landlord`, Category: "BILLS", Subcategory: "RENT", Confidence: 0.85},
			},
		},
		{
			Name: "transport",
			Entries: []Entry{
				{Pattern: `matatu|bus\s+fare|sgr|madaraka`, Category: "TRANSPORT", Subcategory: "PUBLIC", Confidence: 0.8},
				{Pattern: `uber|bolt|little\s+cab`, Category: "TRANSPORT", Subcategory: "RIDE_HAILING", Confidence: 0.9},
				{Pattern: `fuel|petrol|diesel|shell|total\s+energies|rubis`, Category: "TRANSPORT", Subcategory: "FUEL", Confidence: 0.8},
				{Pattern: `boda\s*boda`, Category: "TRANSPORT", Subcategory: "BODA", Confidence: 0.8},
			},
		},
		{
			Name: "shopping",
			Entries: []Entry{
				{Pattern: `naivas|carrefour|quickmart|chandarana`, Category: "SHOPPING", Subcategory: "SUPERMARKET", Confidence: 0.9},
				{Pattern: `supermarket|mini\s*mart`, Category: "SHOPPING", Subcategory: "SUPERMARKET", Confidence: 0.75},
				{Pattern: `jumia|kilimall`, Category: "SHOPPING", Subcategory: "ONLINE", Confidence: 0.9},
			},
		},
		{
			Name: "education",
			Entries: []Entry{
				{Pattern: `school\s+fees?|tuition`, Category: "EDUCATION", Subcategory: "FEES", Confidence: 0.9},
				{Pattern: `university|college|helb`, Category: "EDUCATION", Subcategory: "TERTIARY", Confidence: 0.8},
				{Pattern: `books?\s*(hop|tore)|stationery`, Category: "EDUCATION", Subcategory: "SUPPLIES", Confidence: 0.7},
			},
		},
		{
			Name: "healthcare",
			Entries: []Entry{
				{Pattern: `hospital|clinic|medical`, Category: "HEALTHCARE", Subcategory: "TREATMENT", Confidence: 0.8},
				{Pattern: `pharmacy|chemist`, Category: "HEALTHCARE", Subcategory: "PHARMACY", Confidence: 0.85},
				{Pattern: `nhif|sha\s+contribution`, Category: "HEALTHCARE", Subcategory: "INSURANCE", Confidence: 0.9},
			},
		},
		{
			Name: "loans",
			Entries: []Entry{
				{Pattern: `loan\s+repayment|loan\s+installment`, Category: "LOANS", Subcategory: "REPAYMENT", Confidence: 0.9},
				{Pattern: `loan\s+disbursement`, Category: "LOANS", Subcategory: "DISBURSEMENT", Confidence: 0.9},
				{Pattern: `tala|branch\s+loan|zenka`, Category: "LOANS", Subcategory: "DIGITAL", Confidence: 0.85},
			},
		},
		{
			Name: "savings",
			Entries: []Entry{
				{Pattern: `monthly\s+contribution|share\s+contribution`, Category: "SAVINGS", Subcategory: "SACCO", Confidence: 0.9},
				{Pattern: `chama`, Category: "SAVINGS", Subcategory: "CHAMA", Confidence: 0.85},
				{Pattern: `fixed\s+deposit|money\s+market|mmf`, Category: "SAVINGS", Subcategory: "INVESTMENT", Confidence: 0.85},
				{Pattern: `m-?shwari\s+(deposit|lock)`, Category: "SAVINGS", Subcategory: "MOBILE", Confidence: 0.85},
			},
		},
	}
}
