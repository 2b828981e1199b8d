package db

// Models lists the models owned by this plugin, in migration order.
func Models() []any {
	return []any{
		&Subscription{},
		&AddOn{},
	}
}
