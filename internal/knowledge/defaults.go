// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package knowledge

// defaultsTimestamp is the fixed creation time of the built-in entries
// (2025-01-01T00:00:00Z) so a reset always writes identical bytes.
const defaultsTimestamp int64 = 1735689600000

// DefaultEntries returns a fresh copy of the built-in DISAM knowledge set.
func DefaultEntries() []Entry {
	entries := []Entry{
		{
			ID:    "disam_general",
			Title: "DISAM - Información General",
			Content: `DISAM (Dirección de Salud Municipal de Arica)
- Directora: Sra. Claudia Villegas Cortés
- Dirección: Patricio Lynch #228, Arica
- Teléfono General: (56-58) 2206004
- Secretaría: Sra. Angélica Muena Páez - secretaria.desamu@sermusarica.cl - Tel: 233250101
- Oficina de Partes: Sr. Marco Murillo Muñoz - oficina.partes@sermusarica.cl - Tel: 233250102`,
			Category: "Institucional",
		},
		{
			ID:    "mision_vision",
			Title: "Misión y Visión",
			Content: `MISIÓN: Otorgar atención de salud integral centrada en las personas, en base al modelo de salud familiar y comunitario con énfasis en las acciones de promoción, prevención y participación social, desde una perspectiva de equidad, pertinencia territorial y trabajo en equipo.

VISIÓN: Ser una institución de salud referente, confiable y reconocida por la comunidad, por su cercanía, compromiso y calidad en el cuidado de las personas y sus familias.`,
			Category: "Institucional",
		},
		{
			ID:    "cesfams",
			Title: "Centros de Salud (CESFAM)",
			Content: `1. CESFAM Matrona Rosa Vascopé Zarzola - Directora: Sra. Carmen Chandia Ibáñez - Dirección: Volcán Guallatire #1070 - Tel: 233250281
2. CESFAM Sr. Eugenio Petruccelli Astudillo
3. CESFAM Dr. Remigio Sapunar Marín
4. CESFAM Dr. Victor Bertin Soto
5. CESFAM Enfermera Iris Véliz Hume
6. CESFAM Dr. Amador Neghme Rodríguez`,
			Category: "Centros de Salud",
		},
		{
			ID:    "farmacia",
			Title: "Farmacia Municipal",
			Content: `- Director Técnico: Qf. Bonny Colque Paucara
- Dirección: 18 de Septiembre #453
- Teléfono: 233250264
- Horario: Lunes a Jueves 09:00-17:00, Viernes 09:00-16:00
- Requisitos: Cédula de Identidad + Comprobante de domicilio de la comuna`,
			Category: "Servicios",
		},
		{
			ID:    "urgencias",
			Title: "Servicios de Urgencia",
			Content: `SAPU (Servicio de Atención Primaria de Urgencia):
- SAPU E.U. Marco Carvajal Moreno
- SAPU Matrona Rosa Vascopé Zarzola

SAR (Servicio de Alta Resolutividad):
- SAR Iris Véliz Hume`,
			Category: "Urgencias",
		},
	}

	for i := range entries {
		entries[i].CreatedAt = defaultsTimestamp
		entries[i].UpdatedAt = defaultsTimestamp
	}
	return entries
}
