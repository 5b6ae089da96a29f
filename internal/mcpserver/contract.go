package mcpserver

// AlertCSVContract describes the CSV layout import_alerts accepts.
const AlertCSVContract = `# Nightingale Alert CSV Format

The first line is a header. Column names are matched case-insensitively and
ignore spaces and punctuation, so "MC #", "mc_number" and "MCN" are the same column.

## Columns

| Column | Aliases | Notes |
|---|---|---|
| mcn | mc number, mc#, case number | Links the alert to a case. |
| description | alert description, alert type, type | Required when mcn is empty. |
| name | person name, client name, recipient | "Last, First" or "First Last". |
| first name / last name | first / last | Used when there is no name column. |
| alert code | code, alert id | |
| program | | |
| region | county | |
| alert date | date | |
| due date | due | |
| status | | resolved, closed, cleared, complete or done mark the alert resolved. |
| resolution notes | notes | |

Either mcn or description must be present as a column. Rows with neither are skipped.

## Re-imports

An alert is identified by its normalized mcn plus description. Importing the
same export twice updates the existing alerts instead of adding duplicates;
status and resolution notes set in Nightingale are kept unless the file sets them.

## Unknown MCNs

Rows whose mcn matches no case create a skeleton case named after the person in
the row. Rows without a name are reported as unmatched and no case is created.
`
