package schema

func init() {
	registerCustomers()
	registerContacts()
	registerLeads()
	registerProducts()
}

func registerCustomers() {
	Register(Table{
		Name:        "customers",
		DisplayName: "Customers",
		URLEndpoint: "/api/customers",
		Columns: []Column{
			{Name: "customer_id", DisplayName: "Customer ID", DataType: TypeVarchar, Required: true, MaxLength: 64},
			{Name: "company_name", DisplayName: "Company Name", DataType: TypeVarchar, Required: true, MaxLength: 255},
			{Name: "email", DisplayName: "Email", DataType: TypeVarchar, Required: true, MaxLength: 255},
			{Name: "phone", DisplayName: "Phone", DataType: TypeVarchar, MaxLength: 32},
			{Name: "address", DisplayName: "Address", DataType: TypeText},
			{Name: "status", DisplayName: "Status", DataType: TypeEnum, Required: true, DefaultValue: "active"},
			{Name: "credit_limit", DisplayName: "Credit Limit", DataType: TypeDecimal},
			{Name: "risk_level", DisplayName: "Risk Level", DataType: TypeEnum, Required: true},
			{Name: "is_active", DisplayName: "Active", DataType: TypeBoolean},
			{Name: "created_at", DisplayName: "Created At", DataType: TypeDatetime, Required: true},
		},
	})
}

func registerContacts() {
	Register(Table{
		Name:        "contacts",
		DisplayName: "Contacts",
		URLEndpoint: "/api/contacts",
		Columns: []Column{
			{Name: "first_name", DisplayName: "First Name", DataType: TypeVarchar, Required: true, MaxLength: 100},
			{Name: "last_name", DisplayName: "Last Name", DataType: TypeVarchar, Required: true, MaxLength: 100},
			{Name: "email", DisplayName: "Email", DataType: TypeVarchar, Required: true, MaxLength: 255},
			{Name: "phone", DisplayName: "Phone Number", DataType: TypeVarchar, MaxLength: 32},
			{Name: "company", DisplayName: "Company", DataType: TypeVarchar, MaxLength: 255},
			{Name: "birth_date", DisplayName: "Birth Date", DataType: TypeDate},
			{Name: "opted_in", DisplayName: "Opted In", DataType: TypeBoolean},
			{Name: "updated_at", DisplayName: "Updated At", DataType: TypeTimestamp},
		},
	})
}

func registerLeads() {
	Register(Table{
		Name:        "leads",
		DisplayName: "Leads",
		URLEndpoint: "/api/leads",
		Columns: []Column{
			{Name: "lead_id", DisplayName: "Lead ID", DataType: TypeVarchar, Required: true, MaxLength: 64},
			{Name: "first_name", DisplayName: "First Name", DataType: TypeVarchar, MaxLength: 100},
			{Name: "last_name", DisplayName: "Last Name", DataType: TypeVarchar, MaxLength: 100},
			{Name: "email", DisplayName: "Email", DataType: TypeVarchar, Required: true, MaxLength: 255},
			{Name: "source", DisplayName: "Lead Source", DataType: TypeVarchar, MaxLength: 64},
			{Name: "status", DisplayName: "Status", DataType: TypeEnum, Required: true},
			{Name: "score", DisplayName: "Score", DataType: TypeInt},
			{Name: "created_at", DisplayName: "Created Date", DataType: TypeDatetime, Required: true},
		},
	})
}

// products has no endpoint: imports against it record every row as failed.
func registerProducts() {
	Register(Table{
		Name:        "products",
		DisplayName: "Products",
		Columns: []Column{
			{Name: "sku", DisplayName: "SKU", DataType: TypeVarchar, Required: true, MaxLength: 64},
			{Name: "name", DisplayName: "Product Name", DataType: TypeVarchar, Required: true, MaxLength: 255},
			{Name: "type", DisplayName: "Type", DataType: TypeEnum},
			{Name: "price", DisplayName: "Price", DataType: TypeDecimal, Required: true},
			{Name: "quantity", DisplayName: "Quantity", DataType: TypeInt, DefaultValue: "0"},
			{Name: "launch_date", DisplayName: "Launch Date", DataType: TypeDate},
		},
	})
}
