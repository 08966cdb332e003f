package domain

// ExtractedService holds the fields pulled out of a pasted service text. All
// fields are optional; Messages fills in the conventional placeholders.
type ExtractedService struct {
	Expediente  string
	Vehiculo    string
	Placas      string
	Cliente     string
	Cuenta      string
	EntreCalles string
	Referencia  string
}

func (e ExtractedService) Empty() bool {
	return e == ExtractedService{}
}

// Messages renders the extracted data as the positional message list sent to
// the control group. The order is a convention shared with the operators:
// expediente, vehiculo, placas, cliente, cuenta, entre calles, referencia.
func (e ExtractedService) Messages() []string {
	return []string{
		orPlaceholder(e.Expediente, "No se encontró expediente"),
		orPlaceholder(e.Vehiculo, "No se encontraron datos del vehículo"),
		orPlaceholder(e.Placas, "No se encontraron placas"),
		orPlaceholder(e.Cliente, "No se encontró usuario"),
		orPlaceholder(e.Cuenta, "CHUBB"),
		orPlaceholder(e.EntreCalles, "No hay entre calles"),
		orPlaceholder(e.Referencia, "No hay referencia"),
	}
}

func orPlaceholder(value, placeholder string) string {
	if value == "" {
		return placeholder
	}
	return value
}
